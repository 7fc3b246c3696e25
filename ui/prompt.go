package ui

import (
	"bufio"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
)

// Navigation is returned by a prompt when the user left it instead of
// answering.
type Navigation string

const (
	// Proceed means the prompt was answered.
	Proceed Navigation = ""
	Cancel  Navigation = "cancel"
)

// Choice is an option in a choice list.
type Choice struct {
	Label       string // Display text for the choice
	Description string // Optional description shown after the label
}

func (c Choice) key() string {
	if c.Description == "" {
		return c.Label
	}
	return fmt.Sprintf("%s (%s)", c.Label, c.Description)
}

// PageConfig holds the settings prompts accept as PageOption.
type PageConfig struct {
	Subtitle string
	// Default is the index preselected in a single choice, -1 for the first.
	Default int
	// Selected holds the indices preselected in a multi choice.
	Selected []int
	// CancelLabel adds a last choice that leaves the prompt.
	CancelLabel string
}

// PageOption configures a prompt.
type PageOption func(*PageConfig)

// WithSubtitle sets the text shown below the title.
func WithSubtitle(subtitle string) PageOption {
	return func(c *PageConfig) {
		c.Subtitle = subtitle
	}
}

// WithDefault sets the choice picked when the answer is empty.
func WithDefault(index int) PageOption {
	return func(c *PageConfig) {
		c.Default = index
	}
}

// WithSelected preselects choices in a multi choice.
func WithSelected(indices ...int) PageOption {
	return func(c *PageConfig) {
		c.Selected = indices
	}
}

// WithCancel appends a choice labeled label that cancels the prompt.
func WithCancel(label string) PageOption {
	return func(c *PageConfig) {
		c.CancelLabel = label
	}
}

func applyPageConfig(opts []PageOption) PageConfig {
	cfg := PageConfig{Default: -1}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// ShowChoices asks for one of choices and returns its index.
func (t *Terminal) ShowChoices(title string, choices []Choice, opts ...PageOption) (int, Navigation) {
	cfg := applyPageConfig(opts)
	options := make([]huh.Option[int], 0, len(choices)+1)
	for i, c := range choices {
		options = append(options, huh.NewOption(c.key(), i))
	}
	cancel := -1
	if cfg.CancelLabel != "" {
		cancel = len(choices)
		options = append(options, huh.NewOption(cfg.CancelLabel, cancel))
	}

	idx := cfg.Default
	field := huh.NewSelect[int]().
		Title(title).
		Description(cfg.Subtitle).
		Options(options...).
		Value(&idx)
	if t.run(cfg.Subtitle, field) != Proceed || idx == cancel {
		return -1, Cancel
	}
	return idx, Proceed
}

// ShowChoice is ShowChoices for plain labels.
func (t *Terminal) ShowChoice(title string, options []string, opts ...PageOption) (int, Navigation) {
	choices := make([]Choice, len(options))
	for i, opt := range options {
		choices[i] = Choice{Label: opt}
	}
	return t.ShowChoices(title, choices, opts...)
}

// ShowMultiChoice asks for any number of choices and returns their indices
// in list order.
func (t *Terminal) ShowMultiChoice(title string, choices []Choice, opts ...PageOption) ([]int, Navigation) {
	cfg := applyPageConfig(opts)
	options := make([]huh.Option[int], len(choices))
	for i, c := range choices {
		options[i] = huh.NewOption(c.key(), i)
	}

	selected := append([]int(nil), cfg.Selected...)
	field := huh.NewMultiSelect[int]().
		Title(title).
		Description(cfg.Subtitle).
		Options(options...).
		Value(&selected)
	if t.run(cfg.Subtitle, field) != Proceed {
		return nil, Cancel
	}
	if selected == nil {
		selected = []int{}
	}
	return selected, Proceed
}

// ShowConfirm asks a yes/no question. An empty answer yields def, an
// exhausted input no.
func (t *Terminal) ShowConfirm(title, message string, def bool) bool {
	answer := def
	field := huh.NewConfirm().
		Title(title).
		Description(message).
		Value(&answer)
	if t.run(message, field) != Proceed {
		return false
	}
	return answer
}

// run shows a form holding field. Accessible forms do not print field
// descriptions, so subtitle is written ahead of them.
func (t *Terminal) run(subtitle string, field huh.Field) Navigation {
	t.endProgress()
	form := huh.NewForm(huh.NewGroup(field)).
		WithTheme(t.formTheme).
		WithOutput(t.out)
	if !t.accessible {
		if err := form.WithInput(t.raw).Run(); err != nil {
			return Cancel
		}
		return Proceed
	}

	t.printf("\n")
	if subtitle != "" {
		t.printf("%s\n", t.theme.Subtitle.Render(subtitle))
	}
	t.lines.mark()
	if err := form.WithAccessible(true).WithInput(t.lines).Run(); err != nil {
		return Cancel
	}
	if t.lines.exhausted() {
		return Cancel
	}
	return Proceed
}

// lineReader hands out at most one line per Read so every prompt of an
// accessible form consumes only its own answer. It notices when a prompt
// ran into the end of input without a pending answer.
type lineReader struct {
	r       *bufio.Reader
	pending []byte
	// partial is set while the last line handed out had no line break.
	partial bool
	eof     bool
	starved bool
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

func (l *lineReader) Read(p []byte) (int, error) {
	if len(l.pending) == 0 {
		if l.eof {
			if !l.partial {
				l.starved = true
			}
			l.partial = false
			return 0, io.EOF
		}
		line, err := l.r.ReadBytes('\n')
		if err != nil {
			l.eof = true
			if len(line) == 0 {
				return l.Read(p)
			}
		}
		l.pending = line
		l.partial = line[len(line)-1] != '\n'
	}
	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

// mark starts a new prompt.
func (l *lineReader) mark() {
	l.starved = false
}

// exhausted reports whether the prompt since mark hit the end of input.
func (l *lineReader) exhausted() bool {
	return l.starved
}
