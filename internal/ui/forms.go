package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/regardlab/regard/internal/api"
)

type formKind int

const (
	formLogin formKind = iota
	formRegister
)

// form is the login or registration form.
type form struct {
	kind   formKind
	inputs []textinput.Model
	labels []string
	focus  int
	err    string
}

func newInput(placeholder string, secret bool) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 128
	in.Width = 32
	if secret {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}
	return in
}

func newLoginForm(lastUsername string) *form {
	f := &form{
		kind:   formLogin,
		labels: []string{"Username", "Password"},
		inputs: []textinput.Model{
			newInput("username", false),
			newInput("password", true),
		},
	}
	f.inputs[0].SetValue(lastUsername)
	if lastUsername != "" {
		f.focus = 1
	}
	f.inputs[f.focus].Focus()
	return f
}

func newRegisterForm() *form {
	f := &form{
		kind:   formRegister,
		labels: []string{"Username", "Email", "Password", "First name", "Last name", "Age"},
		inputs: []textinput.Model{
			newInput("username", false),
			newInput("name@example.com", false),
			newInput("password", true),
			newInput("", false),
			newInput("", false),
			newInput("optional", false),
		},
	}
	f.inputs[0].Focus()
	return f
}

func (f *form) value(i int) string {
	return strings.TrimSpace(f.inputs[i].Value())
}

func (f *form) setFocus(i int) {
	n := len(f.inputs)
	f.inputs[f.focus].Blur()
	f.focus = ((i % n) + n) % n
	f.inputs[f.focus].Focus()
}

// update routes a key to the form. submit is true when the user confirmed
// the form and it validated.
func (f *form) update(msg tea.KeyMsg, keys keyMap) (cmd tea.Cmd, submit bool) {
	switch {
	case key.Matches(msg, keys.NextField):
		f.setFocus(f.focus + 1)
		return nil, false
	case key.Matches(msg, keys.PrevField):
		f.setFocus(f.focus - 1)
		return nil, false
	case key.Matches(msg, keys.Submit):
		if f.focus < len(f.inputs)-1 && f.value(f.focus) != "" && f.kind == formRegister {
			f.setFocus(f.focus + 1)
			return nil, false
		}
		if err := f.validate(); err != nil {
			f.err = err.Error()
			return nil, false
		}
		f.err = ""
		return nil, true
	}

	var c tea.Cmd
	f.inputs[f.focus], c = f.inputs[f.focus].Update(msg)
	return c, false
}

func (f *form) validate() error {
	for i, label := range f.labels {
		if f.kind == formRegister && i >= 3 {
			break
		}
		if f.value(i) == "" {
			return fmt.Errorf("%s is required", strings.ToLower(label))
		}
	}
	if f.kind == formRegister {
		if _, err := f.age(); err != nil {
			return err
		}
	}
	return nil
}

func (f *form) age() (*int, error) {
	raw := f.value(5)
	if raw == "" {
		return nil, nil
	}
	age, err := strconv.Atoi(raw)
	if err != nil || age <= 0 || age > 150 {
		return nil, fmt.Errorf("age must be a number between 1 and 150")
	}
	return &age, nil
}

// credentials returns the login form values.
func (f *form) credentials() (username, password string) {
	return f.value(0), f.inputs[1].Value()
}

// registration returns the register form as a request. It assumes validate
// passed.
func (f *form) registration() api.RegisterRequest {
	age, _ := f.age()
	return api.RegisterRequest{
		Username:  f.value(0),
		Email:     f.value(1),
		Password:  f.inputs[2].Value(),
		FirstName: f.value(3),
		LastName:  f.value(4),
		Age:       age,
	}
}

func (f *form) title() string {
	if f.kind == formRegister {
		return "New patient"
	}
	return "Sign in"
}

func (f *form) view(styles Styles) string {
	var b strings.Builder
	b.WriteString(styles.Title.Render(f.title()))
	b.WriteString("\n\n")
	for i, in := range f.inputs {
		label := styles.MutedText.Width(12).Render(f.labels[i])
		if i == f.focus {
			label = styles.AccentText.Width(12).Render(f.labels[i])
		}
		b.WriteString(label)
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if f.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.DangerText.Render(f.err))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("tab next field · enter submit · esc cancel"))
	return b.String()
}
