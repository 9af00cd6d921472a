// ABOUTME: Editor operations shared by the htmx fragments and the JSON editor API.
// ABOUTME: An Op names one editor mutation, optionally inside a nested child editor.

package admin

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/2389/airtruct-console/internal/editor"
)

var (
	errUnknownOp   = errors.New("unknown editor operation")
	errMalformedOp = errors.New("malformed editor operation")
)

// Op is one editor mutation. Refs descends into nested list entries before the
// operation is applied; Ref addresses the entry for entry and case operations.
type Op struct {
	Op        string       `json:"op"`
	Refs      []editor.Ref `json:"refs,omitempty"`
	Path      string       `json:"path,omitempty"`
	Ref       editor.Ref   `json:"ref"`
	Value     any          `json:"value,omitempty"`
	Key       string       `json:"key,omitempty"`
	NewKey    string       `json:"newKey,omitempty"`
	Index     int          `json:"index"`
	To        int          `json:"to"`
	Component string       `json:"component,omitempty"`
	On        bool         `json:"on"`
}

func (o Op) text() string {
	switch v := o.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprint(o.Value)
}

// apply runs the operation against ed or the nested editor Refs points at.
func (o Op) apply(ed *editor.Editor) error {
	target, err := ed.Descend(o.Refs)
	if err != nil {
		return err
	}
	path := editor.ParsePath(o.Path)

	switch o.Op {
	case "set":
		return target.SetValue(path, o.Value)
	case "enable":
		return target.SetEnabled(path, true)
	case "disable":
		return target.SetEnabled(path, false)
	case "flat":
		return target.SetFlat(o.text())
	case "sync":
		target.Sync(o.text())
		return nil
	case "pair_add":
		return target.AddPair(path)
	case "pair_rename":
		return target.RenamePair(path, o.Key, o.NewKey)
	case "pair_set":
		return target.SetPair(path, o.Key, o.text())
	case "pair_remove":
		return target.RemovePair(path, o.Key)
	case "item_append":
		return target.AppendItem(path)
	case "item_set":
		return target.SetItem(path, o.Index, o.text())
	case "item_remove":
		return target.RemoveItem(path, o.Index)
	case "entry_add":
		return target.AddEntry(o.Ref)
	case "entry_remove":
		return target.RemoveEntry(o.Ref)
	case "entry_move":
		return target.MoveEntry(o.Ref, o.To)
	case "entry_select":
		return target.SelectComponent(o.Ref, o.Component)
	case "entry_config":
		return target.SetEntryConfig(o.Ref, o.text())
	case "case_add":
		return target.AddCase(o.Ref.Field)
	case "case_remove":
		return target.RemoveCase(o.Ref.Field, o.Ref.Case)
	case "case_check":
		return target.SetCheck(o.Ref.Field, o.Ref.Case, o.text())
	case "case_flag":
		return target.SetCaseFlag(o.Ref.Field, o.Ref.Case, o.On)
	}
	return fmt.Errorf("%w: %q", errUnknownOp, o.Op)
}

// encodeRefs packs a descent path into a form value: field.case.index segments joined by "/".
func encodeRefs(refs []editor.Ref) string {
	parts := make([]string, 0, len(refs))
	for _, r := range refs {
		parts = append(parts, encodeRef(r))
	}
	return strings.Join(parts, "/")
}

func encodeRef(r editor.Ref) string {
	return fmt.Sprintf("%s.%d.%d", r.Field, r.Case, r.Index)
}

func parseRefs(s string) ([]editor.Ref, error) {
	if s == "" {
		return nil, nil
	}
	var refs []editor.Ref
	for _, part := range strings.Split(s, "/") {
		r, err := parseRef(part)
		if err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, nil
}

func parseRef(s string) (editor.Ref, error) {
	if s == "" {
		return editor.Ref{}, nil
	}
	// Fields nested in objects are dotted, so case and index are the last two segments.
	bits := strings.Split(s, ".")
	n := len(bits)
	if n < 3 {
		return editor.Ref{}, fmt.Errorf("%w: entry reference %q", errMalformedOp, s)
	}
	c, err1 := strconv.Atoi(bits[n-2])
	i, err2 := strconv.Atoi(bits[n-1])
	if err1 != nil || err2 != nil {
		return editor.Ref{}, fmt.Errorf("%w: entry reference %q", errMalformedOp, s)
	}
	return editor.Ref{Field: strings.Join(bits[:n-2], "."), Case: c, Index: i}, nil
}

// opFromForm decodes an operation posted by an htmx widget.
func opFromForm(get func(string) string) (Op, error) {
	o := Op{
		Op:        get("op"),
		Path:      get("path"),
		Key:       get("key"),
		NewKey:    get("new_key"),
		Component: get("component"),
		On:        get("on") == "true",
	}
	o.Value = get("value")
	var err error
	if o.Refs, err = parseRefs(get("refs")); err != nil {
		return Op{}, err
	}
	if o.Ref, err = parseRef(get("ref")); err != nil {
		return Op{}, err
	}
	if s := get("index"); s != "" {
		if o.Index, err = strconv.Atoi(s); err != nil {
			return Op{}, fmt.Errorf("%w: index %q", errMalformedOp, s)
		}
	}
	if s := get("to"); s != "" {
		if o.To, err = strconv.Atoi(s); err != nil {
			return Op{}, fmt.Errorf("%w: position %q", errMalformedOp, s)
		}
	}
	return o, nil
}
