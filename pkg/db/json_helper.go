/*
 * Copyright 2026 FleetMind Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"encoding/json"
	"reflect"
)

// marshalJSON renders v as a JSON string for a JSONB column. Nil collections
// are stored as empty containers rather than JSON null so SQL queries against
// the denormalized columns never see null where a collection is expected.
func marshalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	s := string(raw)
	if s == "null" {
		if reflect.ValueOf(v).Kind() == reflect.Slice {
			return "[]", nil
		}

		return "{}", nil
	}

	return s, nil
}
