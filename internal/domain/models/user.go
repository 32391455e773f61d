package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is a server-assigned identifier. The API may send it as a string or a number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %s", data)
	}
	*id = ID(n.String())
	return nil
}

type User struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
}

// UserRef is the counterparty embedded in a transaction.
type UserRef struct {
	ID       ID     `json:"id"`
	Nickname string `json:"nickname"`
}
