package server

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// flexibleID accepts ids sent either as JSON numbers or as strings.
type flexibleID int64

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := parsePositiveInt64(s)
		if err != nil {
			return err
		}
		*f = flexibleID(parsed)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	parsed, err := parsePositiveInt64(n.String())
	if err != nil {
		return err
	}
	*f = flexibleID(parsed)
	return nil
}

func parsePositiveInt64(value string) (int64, error) {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return 0, strconv.ErrRange
	}
	return parsed, nil
}

func parseUID(value string) (int64, error) {
	uid, err := parsePositiveInt64(value)
	if err != nil {
		return 0, newValidationError("uid", "invalid_uid", "uid must be a positive integer")
	}
	return uid, nil
}

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed <= 0 {
		return nil, newValidationError("conversationId", "invalid_conversation_id", "conversationId must be a positive integer")
	}
	return &parsed, nil
}

func snowflakeID(id flexibleID) snowflake.ID {
	return snowflake.ID(id)
}
