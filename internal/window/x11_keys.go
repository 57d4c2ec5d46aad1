package window

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/BurntSushi/xgbutil/keybind"
)

// keystroke is one key press with held modifiers, both as keysym names
type keystroke struct {
	keysym    string
	modifiers []string
}

var modifierKeysyms = map[string]string{
	"ctrl":    "Control_L",
	"control": "Control_L",
	"alt":     "Alt_L",
	"shift":   "Shift_L",
	"win":     "Super_L",
	"super":   "Super_L",
}

var keyAliases = map[string]string{
	"enter":     "Return",
	"esc":       "Escape",
	"del":       "Delete",
	"backspace": "BackSpace",
	"pgup":      "Prior",
	"pgdn":      "Next",
	"ins":       "Insert",
}

// unshifted and shifted punctuation on a US layout
var charKeysyms = map[rune]string{
	' ': "space", '\n': "Return", '\t': "Tab",
	'-': "minus", '=': "equal", '[': "bracketleft", ']': "bracketright",
	'\\': "backslash", ';': "semicolon", '\'': "apostrophe", '`': "grave",
	',': "comma", '.': "period", '/': "slash",
}

var shiftedKeysyms = map[rune]string{
	'!': "exclam", '@': "at", '#': "numbersign", '$': "dollar", '%': "percent",
	'^': "asciicircum", '&': "ampersand", '*': "asterisk", '(': "parenleft",
	')': "parenright", '_': "underscore", '+': "plus", '{': "braceleft",
	'}': "braceright", '|': "bar", ':': "colon", '"': "quotedbl", '<': "less",
	'>': "greater", '?': "question", '~': "asciitilde",
}

// parseKeys splits text into keystrokes. Plain characters type
// themselves; {Name} presses a key by keysym name or alias, optionally
// with modifiers as in {Ctrl+Shift+Escape}; {{ types a literal brace.
func parseKeys(text string) ([]keystroke, error) {
	var out []keystroke
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '{' {
			if i+1 < len(runes) && runes[i+1] == '{' {
				out = append(out, keystroke{keysym: "braceleft", modifiers: []string{"Shift_L"}})
				i++
				continue
			}
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == '}' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, fmt.Errorf("unterminated key name at offset %d", i)
			}
			ks, err := parseKeyToken(string(runes[i+1 : end]))
			if err != nil {
				return nil, err
			}
			out = append(out, ks)
			i = end
			continue
		}

		ks, err := charKeystroke(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ks)
	}
	return out, nil
}

func parseKeyToken(token string) (keystroke, error) {
	parts := strings.Split(token, "+")
	key := parts[len(parts)-1]
	if key == "" {
		return keystroke{}, fmt.Errorf("empty key name in {%s}", token)
	}

	var ks keystroke
	for _, mod := range parts[:len(parts)-1] {
		sym, ok := modifierKeysyms[strings.ToLower(mod)]
		if !ok {
			return keystroke{}, fmt.Errorf("unknown modifier %q in {%s}", mod, token)
		}
		ks.modifiers = append(ks.modifiers, sym)
	}

	if alias, ok := keyAliases[strings.ToLower(key)]; ok {
		ks.keysym = alias
	} else if len([]rune(key)) == 1 {
		single, err := charKeystroke([]rune(key)[0])
		if err != nil {
			return keystroke{}, err
		}
		ks.keysym = single.keysym
		for _, m := range single.modifiers {
			if !slices.Contains(ks.modifiers, m) {
				ks.modifiers = append(ks.modifiers, m)
			}
		}
	} else {
		ks.keysym = key
	}
	return ks, nil
}

func charKeystroke(r rune) (keystroke, error) {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return keystroke{keysym: string(r)}, nil
	case r >= 'A' && r <= 'Z':
		return keystroke{keysym: string(unicode.ToLower(r)), modifiers: []string{"Shift_L"}}, nil
	}
	if sym, ok := charKeysyms[r]; ok {
		return keystroke{keysym: sym}, nil
	}
	if sym, ok := shiftedKeysyms[r]; ok {
		return keystroke{keysym: sym, modifiers: []string{"Shift_L"}}, nil
	}
	return keystroke{}, fmt.Errorf("cannot type character %q", r)
}

// SendKeys focuses the window and types text through the XTEST extension
func (b *X11Backend) SendKeys(h Handle, text string) error {
	strokes, err := parseKeys(text)
	if err != nil {
		return err
	}
	if err := b.initKeys(); err != nil {
		return err
	}
	if err := b.Focus(h); err != nil {
		return err
	}

	for _, ks := range strokes {
		if err := b.typeKeystroke(ks); err != nil {
			return fmt.Errorf("failed to send keys to window %d: %w", h, err)
		}
	}
	return nil
}

func (b *X11Backend) initKeys() error {
	b.keysOnce.Do(func() {
		if err := xtest.Init(b.xu.Conn()); err != nil {
			b.keysErr = fmt.Errorf("XTEST extension unavailable: %w", err)
			return
		}
		keybind.Initialize(b.xu)
	})
	return b.keysErr
}

func (b *X11Backend) typeKeystroke(ks keystroke) error {
	key, err := b.keycode(ks.keysym)
	if err != nil {
		return err
	}
	mods := make([]xproto.Keycode, 0, len(ks.modifiers))
	for _, m := range ks.modifiers {
		code, err := b.keycode(m)
		if err != nil {
			return err
		}
		mods = append(mods, code)
	}

	for _, code := range mods {
		if err := b.fakeKey(xproto.KeyPress, code); err != nil {
			return err
		}
	}
	if err := b.fakeKey(xproto.KeyPress, key); err != nil {
		return err
	}
	if err := b.fakeKey(xproto.KeyRelease, key); err != nil {
		return err
	}
	for i := len(mods) - 1; i >= 0; i-- {
		if err := b.fakeKey(xproto.KeyRelease, mods[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *X11Backend) keycode(keysym string) (xproto.Keycode, error) {
	codes := keybind.StrToKeycodes(b.xu, keysym)
	if len(codes) == 0 {
		return 0, fmt.Errorf("no keycode for keysym %q", keysym)
	}
	return codes[0], nil
}

func (b *X11Backend) fakeKey(eventType byte, code xproto.Keycode) error {
	return xtest.FakeInputChecked(b.xu.Conn(), eventType, byte(code), xproto.TimeCurrentTime, b.root, 0, 0, 0).Check()
}
