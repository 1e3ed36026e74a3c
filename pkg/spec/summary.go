// Copyright 2025 mcpgate Contributors
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

package spec

import (
	"fmt"
	"sort"
	"strings"
)

// Summary renders a human-readable overview of the resolved spec, one block
// per operation, for CLI inspection.
func (s *Spec) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", s.Source)
	fmt.Fprintf(&b, "Paths: %d\n", len(s.Paths))

	for _, path := range s.Paths {
		for _, method := range Methods {
			op := path.Operation(method)
			if op == nil {
				continue
			}
			fmt.Fprintf(&b, "\n%s %s (%s)\n", method, path.Path, op.ID)
			if op.Summary != "" {
				fmt.Fprintf(&b, "  %s\n", op.Summary)
			}
			for _, p := range op.Parameters {
				b.WriteString("  " + describeParameter(p) + "\n")
			}
			if op.RequestBody != nil {
				fmt.Fprintf(&b, "  body %s%s\n", op.RequestBody.ContentType, describeBodySchema(op.RequestBody.Schema))
			}
			if len(op.Responses) > 0 {
				codes := make([]string, 0, len(op.Responses))
				for code := range op.Responses {
					codes = append(codes, code)
				}
				sort.Strings(codes)
				fmt.Fprintf(&b, "  responses %s\n", strings.Join(codes, ", "))
			}
		}
	}
	return b.String()
}

func describeParameter(p Parameter) string {
	typ := p.Type
	if len(p.Types) > 0 {
		typ = strings.Join(p.Types, " | ")
	}
	s := fmt.Sprintf("%s %s (%s", p.In, p.Name, typ)
	if p.Required {
		s += ", required"
	}
	if len(p.Enum) > 0 {
		s += fmt.Sprintf(", %d options", len(p.Enum))
	}
	return s + ")"
}

func describeBodySchema(sch *Schema) string {
	if sch == nil || len(sch.Properties) == 0 {
		return ""
	}
	return ": " + strings.Join(sch.PropertyNames(), ", ")
}
