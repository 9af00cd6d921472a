// ABOUTME: Text-level wrappers around the list conversions.
// ABOUTME: Decoding never fails; unparseable text is logged and yields no entries.

package bridge

import (
	"log"

	"github.com/2389/airtruct-console/internal/configtext"
	"github.com/2389/airtruct-console/internal/schema"
)

func encode(items []any) string {
	if len(items) == 0 {
		return ""
	}
	text, err := configtext.Dump(items)
	if err != nil {
		log.Printf("Failed to encode component list: %v", err)
		return ""
	}
	return text
}

func decode(kind, text string) any {
	v, err := configtext.Parse(text)
	if err != nil {
		log.Printf("Failed to parse %s text, treating it as empty: %v", kind, err)
		return nil
	}
	return v
}

// EncodeProcessorList renders processor entries as config text. No complete entries yields "".
func (b *Bridge) EncodeProcessorList(entries []Entry) string {
	return encode(b.ProcessorList(entries))
}

// EncodeInputList renders input entries as config text.
func (b *Bridge) EncodeInputList(entries []Entry) string {
	return encode(b.InputList(entries))
}

// EncodeOutputList renders output entries as config text.
func (b *Bridge) EncodeOutputList(entries []Entry) string {
	return encode(b.OutputList(entries))
}

// EncodeProcessorCases renders processor switch cases as config text.
func (b *Bridge) EncodeProcessorCases(cases []ProcessorCase) string {
	return encode(b.ProcessorCases(cases))
}

// EncodeOutputCases renders output switch cases as config text.
func (b *Bridge) EncodeOutputCases(cases []OutputCase) string {
	return encode(b.OutputCases(cases))
}

// DecodeProcessorList parses processor list text.
func (b *Bridge) DecodeProcessorList(text string) []Entry {
	return b.ToList(schema.RoleProcessor, decode("processor list", text))
}

// DecodeInputList parses input list text.
func (b *Bridge) DecodeInputList(text string) []Entry {
	return b.ToList(schema.RoleInput, decode("input list", text))
}

// DecodeOutputList parses output list text.
func (b *Bridge) DecodeOutputList(text string) []Entry {
	return b.ToList(schema.RoleOutput, decode("output list", text))
}

// DecodeProcessorCases parses processor switch text.
func (b *Bridge) DecodeProcessorCases(text string) []ProcessorCase {
	return b.ToProcessorCases(decode("processor cases", text))
}

// DecodeOutputCases parses output switch text.
func (b *Bridge) DecodeOutputCases(text string) []OutputCase {
	return b.ToOutputCases(decode("output cases", text))
}
