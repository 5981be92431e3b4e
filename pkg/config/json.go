// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 🔧 JSONParser reads .json config files. Unknown keys are rejected and
// every decode error names the line and column it was found at.
type JSONParser struct{}

func init() {
	Register(&JSONParser{})
}

func (p *JSONParser) CanParse(filename string) bool {
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(filename)), ".json")
}

func (p *JSONParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing JSON: %w", explainJSON(data, err))
	}
	if _, err := decoder.Token(); err != io.EOF {
		line, col := position(data, decoder.InputOffset())
		return nil, errors.Errorf("parsing JSON: line %d, column %d: unexpected data after the config object", line, col)
	}
	return &cfg, nil
}

var unknownField = regexp.MustCompile(`^json: unknown field "(.*)"$`)

// explainJSON rewrites encoding/json errors so they point into data
func explainJSON(data []byte, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return errors.New("empty document")
	case errors.Is(err, io.ErrUnexpectedEOF):
		line, col := position(data, int64(len(data)))
		return errors.Errorf("line %d, column %d: unexpected end of input", line, col)
	case errors.As(err, &syntaxErr):
		line, col := position(data, syntaxErr.Offset)
		return errors.Errorf("line %d, column %d: %w", line, col, err)
	case errors.As(err, &typeErr):
		line, col := position(data, typeErr.Offset)
		return errors.Errorf("line %d, column %d: field %q: cannot use %s as %s", line, col, typeErr.Field, typeErr.Value, typeErr.Type)
	}

	if m := unknownField.FindStringSubmatch(err.Error()); m != nil {
		key := regexp.MustCompile(`"` + regexp.QuoteMeta(m[1]) + `"\s*:`)
		if loc := key.FindIndex(data); loc != nil {
			line, col := position(data, int64(loc[0]+1))
			return errors.Errorf("line %d, column %d: unknown field %q", line, col, m[1])
		}
		return errors.Errorf("unknown field %q", m[1])
	}
	return err
}

// position turns a byte offset from encoding/json (bytes read, so the
// offending byte is the last one) into a 1-based line and column.
func position(data []byte, offset int64) (line, col int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	if offset < 0 {
		offset = 0
	}
	before := data[:offset]
	line = bytes.Count(before, []byte("\n")) + 1
	col = len(before) - (bytes.LastIndexByte(before, '\n') + 1)
	if col == 0 {
		col = 1
	}
	return line, col
}
