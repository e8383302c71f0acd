// Package prompt holds the instructions sent to the code generation model for
// each kind of design input.
package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type Source string

const (
	SourceImage  Source = "image"
	SourceSketch Source = "sketch"
	SourceText   Source = "text"
	SourceVoice  Source = "voice"
)

var Sources = []Source{SourceImage, SourceSketch, SourceText, SourceVoice}

const outputFormat = "Output only the code without any extra text. Format: first full HTML, then CSS in a <style> tag below."

var defaults = map[Source]string{
	SourceImage:  "Convert this UI image into pixel-perfect, clean, responsive HTML and CSS. Match the layout, spacing, and styles exactly as shown in the image. " + outputFormat,
	SourceSketch: "Convert this Hand Drawn UI sketch into, clean, responsive HTML and CSS. Match the layout, spacing, and styles exactly as shown in the image. " + outputFormat,
	SourceText:   "Convert this Description into perfect, clean, responsive HTML and CSS. Match the layout, spacing, and styles exactly as said in the text. " + outputFormat,
	SourceVoice:  "Convert this Description into perfect, clean, responsive HTML and CSS. Match the layout, spacing, and styles exactly as said in the text. " + outputFormat,
}

const composeTemplate = "{{instructions}}\n\n{{description}}"

// Library maps each source to its instructions.
type Library struct {
	instructions map[Source]string
}

// NewLibrary returns the built-in instructions.
func NewLibrary() *Library {
	l := &Library{instructions: make(map[Source]string, len(defaults))}
	for s, text := range defaults {
		l.instructions[s] = text
	}
	return l
}

// LoadDir overrides instructions with <source>.txt files from dir. Missing
// files keep the built-in text; an empty dir argument is a no-op.
func (l *Library) LoadDir(dir string) error {
	if dir == "" {
		return nil
	}
	for _, s := range Sources {
		data, err := os.ReadFile(filepath.Join(dir, string(s)+".txt"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load %s prompt: %w", s, err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			l.instructions[s] = text
		}
	}
	return nil
}

// Instructions returns override when it is non-blank, else the library text.
func (l *Library) Instructions(s Source, override string) string {
	if o := strings.TrimSpace(override); o != "" {
		return o
	}
	return l.instructions[s]
}

// Build returns the full prompt for a source. Image and sketch prompts are
// the instructions alone; text and voice prompts append the description.
func (l *Library) Build(s Source, override, description string) (string, error) {
	instructions := l.Instructions(s, override)
	if s == SourceImage || s == SourceSketch {
		return instructions, nil
	}
	return Compose(instructions, description)
}

// Compose joins instructions and a description with a blank line.
func Compose(instructions, description string) (string, error) {
	return Render(composeTemplate, map[string]string{
		"instructions": instructions,
		"description":  description,
	})
}
