package vault

import (
	"github.com/google/uuid"

	"github.com/rofi-bw/rofi-bw-go/internal/cipherstring"
)

// The types below mirror the shape of the account JSON pulled by
// vaultapi.Client.Sync. Field names follow the server's actual casing: we
// accept the server's "favorite" and expose the British spelling
// internally via Cipher.Favourite.

type rawAccount struct {
	Profile rawProfile  `json:"profile"`
	Folders []rawFolder `json:"folders"`
	Ciphers []rawCipher `json:"ciphers"`
}

type rawProfile struct {
	Key cipherstring.CipherString `json:"key"`
}

type rawFolder struct {
	ID   uuid.UUID                 `json:"id"`
	Name cipherstring.CipherString `json:"name"`
}

type rawCipher struct {
	ID          uuid.UUID                  `json:"id"`
	FolderID    *uuid.UUID                 `json:"folderId"`
	Type        int                        `json:"type"`
	Name        cipherstring.CipherString  `json:"name"`
	Notes       *cipherstring.CipherString `json:"notes"`
	Favorite    bool                       `json:"favorite"`
	DeletedDate *string                    `json:"deletedDate"`
	Reprompt    int                        `json:"reprompt"`

	Login    *rawLogin    `json:"login"`
	Card     *rawCard     `json:"card"`
	Identity *rawIdentity `json:"identity"`

	Fields []rawField `json:"fields"`
}

type rawLogin struct {
	Username *cipherstring.CipherString `json:"username"`
	Password *cipherstring.CipherString `json:"password"`
	URIs     []rawLoginURI              `json:"uris"`
}

type rawLoginURI struct {
	URI cipherstring.CipherString `json:"uri"`
}

type rawCard struct {
	CardholderName *cipherstring.CipherString `json:"cardholderName"`
	Brand          *cipherstring.CipherString `json:"brand"`
	Number         *cipherstring.CipherString `json:"number"`
	ExpMonth       *cipherstring.CipherString `json:"expMonth"`
	ExpYear        *cipherstring.CipherString `json:"expYear"`
	Code           *cipherstring.CipherString `json:"code"`
}

type rawIdentity struct {
	Title      *cipherstring.CipherString `json:"title"`
	FirstName  *cipherstring.CipherString `json:"firstName"`
	MiddleName *cipherstring.CipherString `json:"middleName"`
	LastName   *cipherstring.CipherString `json:"lastName"`
	Username   *cipherstring.CipherString `json:"username"`
	Company    *cipherstring.CipherString `json:"company"`
	SSN        *cipherstring.CipherString `json:"ssn"`
	PassportNumber *cipherstring.CipherString `json:"passportNumber"`
	LicenseNumber  *cipherstring.CipherString `json:"licenseNumber"`
	Email      *cipherstring.CipherString `json:"email"`
	Phone      *cipherstring.CipherString `json:"phone"`
	Address1   *cipherstring.CipherString `json:"address1"`
	Address2   *cipherstring.CipherString `json:"address2"`
	Address3   *cipherstring.CipherString `json:"address3"`
	City       *cipherstring.CipherString `json:"city"`
	State      *cipherstring.CipherString `json:"state"`
	PostalCode *cipherstring.CipherString `json:"postalCode"`
	Country    *cipherstring.CipherString `json:"country"`
}

// rawFieldType matches the custom-field type tag in the sync payload.
type rawFieldType int

const (
	fieldTypeText    rawFieldType = 0
	fieldTypeHidden  rawFieldType = 1
	fieldTypeBoolean rawFieldType = 2
	fieldTypeLinked  rawFieldType = 3
)

type rawField struct {
	Name       *cipherstring.CipherString `json:"name"`
	Value      *cipherstring.CipherString `json:"value"`
	Type       rawFieldType               `json:"type"`
	LinkedID   *int                       `json:"linkedId"`
}
