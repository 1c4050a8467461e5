// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package upstream

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
)

// XMLRoot accepts a well-formed XML document whose root element is one of
// roots. E-utilities reports failures inside an ERROR element with HTTP
// 200, so any ERROR element rejects the payload.
func XMLRoot(roots ...string) Validator {
	return func(body []byte) error {
		d := xml.NewDecoder(bytes.NewReader(body))
		d.Strict = true
		root := ""
		for {
			tok, err := d.Token()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("malformed XML: %w", err)
			}
			se, ok := tok.(xml.StartElement)
			if !ok {
				continue
			}
			if root == "" {
				root = se.Name.Local
				if !slices.Contains(roots, root) {
					return fmt.Errorf("unexpected XML root <%s>", root)
				}
			}
			if se.Name.Local == "ERROR" {
				var msg string
				if err := d.DecodeElement(&msg, &se); err == nil && msg != "" {
					return fmt.Errorf("upstream error: %s", msg)
				}
				return errors.New("upstream error element in payload")
			}
		}
		if root == "" {
			return errors.New("empty XML document")
		}
		return nil
	}
}

// JSONObject accepts a JSON object that carries key at the top level.
func JSONObject(key string) Validator {
	return func(body []byte) error {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return fmt.Errorf("malformed JSON: %w", err)
		}
		if _, ok := obj[key]; !ok {
			return fmt.Errorf("JSON payload has no %q field", key)
		}
		return nil
	}
}
