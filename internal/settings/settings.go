// Package settings implements the layered settings resolver: defaults
// -> site sparse overrides -> matching asset overrides, schema
// validation with default backfill, a TTL cache, and the glob-pattern
// URL matcher used to pick which asset overrides apply.
//
// The cascading merge layers defaults -> site -> asset the same way a
// multi-level config resolver layers defaults -> group -> leaf,
// recursing into objects while letting each level replace arrays and
// primitives wholesale.
package settings

import "encoding/json"

// Document is a sparse JSON object: plain objects merge recursively,
// arrays and primitives are replaced wholesale, and absent keys are
// ignored during merge.
type Document map[string]any

// Clone deep-copies d via a JSON round-trip, which is sufficient since
// Document only ever holds JSON-shaped values.
func (d Document) Clone() Document {
	if d == nil {
		return Document{}
	}
	raw, _ := json.Marshal(d)
	var out Document
	_ = json.Unmarshal(raw, &out)
	return out
}

// ParseDocument decodes a stored sparse-settings blob, treating empty
// input as an empty document rather than an error.
func ParseDocument(raw []byte) (Document, error) {
	if len(raw) == 0 {
		return Document{}, nil
	}
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	if d == nil {
		d = Document{}
	}
	return d, nil
}

// Merge recursively merges override onto base and returns a new
// Document; base and override are untouched.
func Merge(base, override Document) Document {
	out := base.Clone()
	mergeInto(out, override)
	return out
}

func mergeInto(dst Document, src Document) {
	for k, v := range src {
		existing, ok := dst[k]
		if !ok {
			dst[k] = v
			continue
		}
		srcObj, srcIsObj := v.(map[string]any)
		dstObj, dstIsObj := existing.(map[string]any)
		if srcIsObj && dstIsObj {
			mergeInto(Document(dstObj), Document(srcObj))
			dst[k] = dstObj
			continue
		}
		// arrays and primitives: override replaces wholesale.
		dst[k] = v
	}
}

// Diff walks override against base and emits a tree of booleans: true
// at every leaf path present in override that differs from base, so
// that diff(base, resolve(base, override)) reproduces exactly
// override's differing leaves.
func Diff(base, override Document) Document {
	out := Document{}
	diffInto(out, base, override)
	return out
}

func diffInto(dst Document, base, override Document) {
	for k, v := range override {
		baseVal, hasBase := base[k]
		overrideObj, overrideIsObj := v.(map[string]any)
		baseObj, baseIsObj := baseVal.(map[string]any)
		if overrideIsObj && (baseIsObj || !hasBase) {
			sub := Document{}
			diffInto(sub, Document(baseObj), Document(overrideObj))
			if len(sub) > 0 {
				dst[k] = sub
			}
			continue
		}
		if !hasBase || !deepEqual(baseVal, v) {
			dst[k] = true
		}
	}
}

func deepEqual(a, b any) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return string(ab) == string(bb)
}
