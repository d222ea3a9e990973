package attributedbody

import (
	"bytes"
	"sort"
	"strings"

	"howett.net/plist"
)

const (
	// MaxGraphDepth bounds how far the walker descends into nested values.
	MaxGraphDepth = 10

	archiveNull = "$null"
)

var binaryPlistMagic = []byte("bplist")

// priorityKeys are checked, in order, before any other key of a mapping.
var priorityKeys = []string{"NSString", "NS.string", "__kIMMessagePartAttributeName", "string"}

// archiverKeys carry class bookkeeping of keyed archives and never hold text.
var archiverKeys = map[string]struct{}{
	"$class":     {},
	"$classes":   {},
	"$classname": {},
	"$archiver":  {},
	"$version":   {},
}

// ExtractArchive decodes blob as a binary property list (usually an
// NSKeyedArchiver graph) and searches it for message text.
//
// Mappings are searched through priorityKeys first and then through the
// remaining keys in sorted order, so the result is deterministic. Keyed
// archive UID references are followed through $objects.
func ExtractArchive(blob []byte) Outcome {
	if !bytes.HasPrefix(blob, binaryPlistMagic) {
		return NotRecovered(NotApplicable)
	}

	var root any
	format, err := plist.Unmarshal(blob, &root)
	if err != nil || format != plist.BinaryFormat {
		return NotRecovered(NotApplicable)
	}

	w := &graphWalker{}
	if top, objects, ok := keyedArchive(root); ok {
		w.objects = objects
		if text, found := w.find(top, 0); found {
			return Recovered(text)
		}
		// Some archives keep the body in $objects without a path from $top.
		for i := range objects {
			if text, found := w.find(plist.UID(i), 0); found {
				return Recovered(text)
			}
		}
		return NotRecovered(NoText)
	}

	if text, found := w.find(root, 0); found {
		return Recovered(text)
	}
	return NotRecovered(NoText)
}

func keyedArchive(root any) (top any, objects []any, ok bool) {
	dict, isDict := root.(map[string]any)
	if !isDict {
		return nil, nil, false
	}
	objects, hasObjects := dict["$objects"].([]any)
	if !hasObjects {
		return nil, nil, false
	}
	top, hasTop := dict["$top"]
	if !hasTop {
		return nil, objects, true
	}
	return top, objects, true
}

type graphWalker struct {
	objects []any
	// entered maps an $objects index to the shallowest depth it was searched
	// from. An object is searched again only from a shallower depth, so each
	// one is entered at most MaxGraphDepth+1 times.
	entered map[uint64]int
	// deepest records the largest depth the walker entered.
	deepest int
}

func (w *graphWalker) find(value any, depth int) (string, bool) {
	if depth > MaxGraphDepth {
		return "", false
	}
	if depth > w.deepest {
		w.deepest = depth
	}

	switch v := value.(type) {
	case string:
		text := strings.TrimSpace(v)
		if text == archiveNull || !IsMessageText(text) {
			return "", false
		}
		return text, true
	case plist.UID:
		index := uint64(v)
		if index >= uint64(len(w.objects)) {
			return "", false
		}
		if from, seen := w.entered[index]; seen && from <= depth {
			return "", false
		}
		if w.entered == nil {
			w.entered = make(map[uint64]int)
		}
		w.entered[index] = depth
		return w.find(w.objects[index], depth+1)
	case map[string]any:
		for _, key := range priorityKeys {
			if child, ok := v[key]; ok {
				if text, found := w.find(child, depth+1); found {
					return text, true
				}
			}
		}
		for _, key := range sortedKeys(v) {
			if isPriorityKey(key) {
				continue
			}
			if _, skip := archiverKeys[key]; skip {
				continue
			}
			if text, found := w.find(v[key], depth+1); found {
				return text, true
			}
		}
	case []any:
		for _, child := range v {
			if text, found := w.find(child, depth+1); found {
				return text, true
			}
		}
	}
	return "", false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func isPriorityKey(key string) bool {
	for _, k := range priorityKeys {
		if k == key {
			return true
		}
	}
	return false
}
