package vault

import (
	"fmt"
	"strings"

	"github.com/rofi-bw/rofi-bw-go/internal/cipherstring"
	"github.com/rofi-bw/rofi-bw-go/internal/view"
)

// cipherType maps the sync payload's numeric type tag to view.CipherType.
// Unrecognized tags return ok=false so the caller can skip the cipher with
// a warning.
func cipherType(raw int) (view.CipherType, bool) {
	switch raw {
	case 1:
		return view.Login, true
	case 2:
		return view.SecureNote, true
	case 3:
		return view.Card, true
	case 4:
		return view.Identity, true
	default:
		return 0, false
	}
}

// linkedFieldNames maps a custom field's "linkedId" tag to the display name
// of the typed field it points at, used to build a Link action's target:
// activating one rewrites the search filter to the linked field's name.
// IDs follow the conventional per-type numbering: the hundreds digit
// selects the owning cipher type, matching the fixed field order built
// below.
var linkedFieldNames = map[int]string{
	100: "Username", 101: "Password",
	300: "Cardholder", 301: "Brand", 302: "Number", 303: "Expiration", 304: "Security code",
	400: "Name", 401: "Username", 402: "Company", 403: "SSN",
	404: "Passport", 405: "Licence", 406: "Email", 407: "Phone", 408: "Address",
}

func decryptCipher(rc rawCipher, ct view.CipherType, key cipherstring.SymmetricKey) (Cipher, error) {
	name, err := cipherstring.Decrypt[string](rc.Name, key)
	if err != nil {
		return Cipher{}, fmt.Errorf("decrypt name: %w", err)
	}

	var notes string
	if rc.Notes != nil {
		notes, err = cipherstring.Decrypt[string](*rc.Notes, key)
		if err != nil {
			return Cipher{}, fmt.Errorf("decrypt notes: %w", err)
		}
	}

	var fields []Field
	var defaultCopy *int

	switch ct {
	case view.Login:
		fields, defaultCopy, err = loginFields(rc.Login, key)
	case view.Card:
		fields, err = cardFields(rc.Card, key)
	case view.Identity:
		fields, err = identityFields(rc.Identity, key)
	case view.SecureNote:
		// handled below once notes is known
	}
	if err != nil {
		return Cipher{}, err
	}

	if ct == view.SecureNote && rc.Notes != nil {
		idx := len(fields)
		fields = append(fields, Field{
			Display: "Notes",
			Icon:    IconNote,
			Action:  &Action{Kind: ActionCopy, Label: "Notes", Data: notes},
		})
		defaultCopy = &idx
	} else if notes != "" {
		fields = append(fields, Field{
			Display: "Notes",
			Icon:    IconNote,
			Action:  &Action{Kind: ActionCopy, Label: "Notes", Data: notes},
		})
	}

	customFields, err := decryptCustomFields(rc.Fields, key)
	if err != nil {
		return Cipher{}, err
	}
	fields = append(fields, customFields...)

	deleted := rc.DeletedDate != nil

	return Cipher{
		ID:          rc.ID,
		FolderID:    rc.FolderID,
		Type:        ct,
		Deleted:     deleted,
		Favourite:   rc.Favorite,
		Name:        name,
		Icon:        cipherIcon(ct),
		Reprompt:    rc.Reprompt != 0,
		Fields:      fields,
		DefaultCopy: defaultCopy,
	}, nil
}

func cipherIcon(ct view.CipherType) Icon {
	switch ct {
	case view.Login:
		return IconGlobe
	case view.Card:
		return IconCard
	case view.Identity:
		return IconIdentity
	case view.SecureNote:
		return IconNote
	default:
		return IconLock
	}
}

// loginFields produces, in order: Username, Password (default copy), then
// each URI.
func loginFields(l *rawLogin, key cipherstring.SymmetricKey) ([]Field, *int, error) {
	if l == nil {
		return nil, nil, nil
	}

	var fields []Field
	var defaultCopy *int

	if l.Username != nil {
		v, err := cipherstring.Decrypt[string](*l.Username, key)
		if err != nil {
			return nil, nil, fmt.Errorf("decrypt login username: %w", err)
		}
		fields = append(fields, Field{
			Display: v, Icon: IconUser,
			Action: &Action{Kind: ActionCopy, Label: "Username", Data: v},
		})
	}

	if l.Password != nil {
		v, err := cipherstring.Decrypt[string](*l.Password, key)
		if err != nil {
			return nil, nil, fmt.Errorf("decrypt login password: %w", err)
		}
		idx := len(fields)
		fields = append(fields, Field{
			Display: strings.Repeat("•", 8), Icon: IconLock,
			Action: &Action{Kind: ActionCopy, Label: "Password", Data: v, Hidden: true},
		})
		defaultCopy = &idx
	}

	for _, u := range l.URIs {
		v, err := cipherstring.Decrypt[string](u.URI, key)
		if err != nil {
			return nil, nil, fmt.Errorf("decrypt login uri: %w", err)
		}
		fields = append(fields, Field{
			Display: v, Icon: IconGlobe,
			Action: &Action{Kind: ActionCopy, Label: "URI", Data: v},
		})
	}

	return fields, defaultCopy, nil
}

// cardFields produces, in order: Cardholder, Brand, Number, Expiration,
// Security code.
func cardFields(c *rawCard, key cipherstring.SymmetricKey) ([]Field, error) {
	if c == nil {
		return nil, nil
	}

	var fields []Field
	add := func(cs *cipherstring.CipherString, label string, icon Icon, hidden bool) error {
		if cs == nil {
			return nil
		}
		v, err := cipherstring.Decrypt[string](*cs, key)
		if err != nil {
			return fmt.Errorf("decrypt card %s: %w", label, err)
		}
		display := v
		if hidden {
			display = strings.Repeat("•", 4)
		}
		fields = append(fields, Field{
			Display: display, Icon: icon,
			Action: &Action{Kind: ActionCopy, Label: label, Data: v, Hidden: hidden},
		})
		return nil
	}

	if err := add(c.CardholderName, "Cardholder", IconIdentity, false); err != nil {
		return nil, err
	}
	if err := add(c.Brand, "Brand", IconCard, false); err != nil {
		return nil, err
	}
	if err := add(c.Number, "Number", IconCard, true); err != nil {
		return nil, err
	}

	if c.ExpMonth != nil || c.ExpYear != nil {
		month, err := decryptOrEmpty(c.ExpMonth, key)
		if err != nil {
			return nil, fmt.Errorf("decrypt card expiration month: %w", err)
		}
		year, err := decryptOrEmpty(c.ExpYear, key)
		if err != nil {
			return nil, fmt.Errorf("decrypt card expiration year: %w", err)
		}
		exp := month + "/" + year
		fields = append(fields, Field{
			Display: exp, Icon: IconCard,
			Action: &Action{Kind: ActionCopy, Label: "Expiration", Data: exp},
		})
	}

	if err := add(c.Code, "Security code", IconLock, true); err != nil {
		return nil, err
	}

	return fields, nil
}

// identityFields produces, in order: Name (composed), Username, Company,
// SSN, Passport, Licence, Email, Phone, Address (composed, multiline).
func identityFields(id *rawIdentity, key cipherstring.SymmetricKey) ([]Field, error) {
	if id == nil {
		return nil, nil
	}

	var fields []Field

	nameParts := []*cipherstring.CipherString{id.Title, id.FirstName, id.MiddleName, id.LastName}
	name, err := composeFields(nameParts, " ", key)
	if err != nil {
		return nil, fmt.Errorf("decrypt identity name: %w", err)
	}
	if name != "" {
		fields = append(fields, Field{
			Display: name, Icon: IconIdentity,
			Action: &Action{Kind: ActionCopy, Label: "Name", Data: name},
		})
	}

	add := func(cs *cipherstring.CipherString, label string, icon Icon, hidden bool) error {
		if cs == nil {
			return nil
		}
		v, err := cipherstring.Decrypt[string](*cs, key)
		if err != nil {
			return fmt.Errorf("decrypt identity %s: %w", label, err)
		}
		fields = append(fields, Field{
			Display: v, Icon: icon,
			Action: &Action{Kind: ActionCopy, Label: label, Data: v, Hidden: hidden},
		})
		return nil
	}

	if err := add(id.Username, "Username", IconUser, false); err != nil {
		return nil, err
	}
	if err := add(id.Company, "Company", IconIdentity, false); err != nil {
		return nil, err
	}
	if err := add(id.SSN, "SSN", IconLock, true); err != nil {
		return nil, err
	}
	if err := add(id.PassportNumber, "Passport", IconLock, true); err != nil {
		return nil, err
	}
	if err := add(id.LicenseNumber, "Licence", IconLock, true); err != nil {
		return nil, err
	}
	if err := add(id.Email, "Email", IconUser, false); err != nil {
		return nil, err
	}
	if err := add(id.Phone, "Phone", IconUser, false); err != nil {
		return nil, err
	}

	addrParts := []*cipherstring.CipherString{id.Address1, id.Address2, id.Address3, id.City, id.State, id.PostalCode, id.Country}
	addr, err := composeFields(addrParts, "\n", key)
	if err != nil {
		return nil, fmt.Errorf("decrypt identity address: %w", err)
	}
	if addr != "" {
		fields = append(fields, Field{
			Display: addr, Icon: IconIdentity,
			Action: &Action{Kind: ActionCopy, Label: "Address", Data: addr},
		})
	}

	return fields, nil
}

func composeFields(parts []*cipherstring.CipherString, sep string, key cipherstring.SymmetricKey) (string, error) {
	var pieces []string
	for _, p := range parts {
		if p == nil {
			continue
		}
		v, err := cipherstring.Decrypt[string](*p, key)
		if err != nil {
			return "", err
		}
		if v != "" {
			pieces = append(pieces, v)
		}
	}
	return strings.Join(pieces, sep), nil
}

func decryptOrEmpty(cs *cipherstring.CipherString, key cipherstring.SymmetricKey) (string, error) {
	if cs == nil {
		return "", nil
	}
	return cipherstring.Decrypt[string](*cs, key)
}

// decryptCustomFields implements the fixed display/copy rule: hidden-with-
// value shows "name (hidden)" and copies the value with Hidden=true;
// boolean shows ☐/☑; linked shows "→ target" and emits a Link action
// instead of Copy.
func decryptCustomFields(raw []rawField, key cipherstring.SymmetricKey) ([]Field, error) {
	var fields []Field
	for _, rf := range raw {
		var name string
		if rf.Name != nil {
			v, err := cipherstring.Decrypt[string](*rf.Name, key)
			if err != nil {
				return nil, fmt.Errorf("decrypt custom field name: %w", err)
			}
			name = v
		}

		switch rf.Type {
		case fieldTypeLinked:
			target := name
			if rf.LinkedID != nil {
				if n, ok := linkedFieldNames[*rf.LinkedID]; ok {
					target = n
				}
			}
			fields = append(fields, Field{
				Display: "→ " + target, Icon: IconLink,
				Action: &Action{Kind: ActionLink, LinkTo: target},
			})

		case fieldTypeBoolean:
			var value bool
			if rf.Value != nil {
				v, err := cipherstring.Decrypt[bool](*rf.Value, key)
				if err != nil {
					return nil, fmt.Errorf("decrypt custom field %q: %w", name, err)
				}
				value = v
			}
			glyph := "☐"
			if value {
				glyph = "☑"
			}
			fields = append(fields, Field{
				Display: fmt.Sprintf("%s %s", glyph, name), Icon: IconBoolean,
			})

		case fieldTypeHidden:
			var value string
			if rf.Value != nil {
				v, err := cipherstring.Decrypt[string](*rf.Value, key)
				if err != nil {
					return nil, fmt.Errorf("decrypt custom field %q: %w", name, err)
				}
				value = v
			}
			display := name
			if value != "" {
				display = name + " (hidden)"
			}
			fields = append(fields, Field{
				Display: display, Icon: IconLock,
				Action: &Action{Kind: ActionCopy, Label: name, Data: value, Hidden: true},
			})

		default: // plain text
			var value string
			if rf.Value != nil {
				v, err := cipherstring.Decrypt[string](*rf.Value, key)
				if err != nil {
					return nil, fmt.Errorf("decrypt custom field %q: %w", name, err)
				}
				value = v
			}
			fields = append(fields, Field{
				Display: name, Icon: IconUser,
				Action: &Action{Kind: ActionCopy, Label: name, Data: value},
			})
		}
	}
	return fields, nil
}
