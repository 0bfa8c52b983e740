package view

// CipherIndex and FolderIndex are distinct index types into a vault's
// Cipher/Folder slices, preventing accidental cross-indexing. Go has no
// phantom types, so these are plain newtypes wrapping int.
type CipherIndex int
type FolderIndex int

// CipherType enumerates the recognized cipher kinds. Unknown types
// observed in the sync payload are skipped with a warning, never
// represented here.
type CipherType int

const (
	Login CipherType = iota
	SecureNote
	Card
	Identity
)

// ListKind distinguishes the kinds of top-level list view.
type ListKind int

const (
	ListAll ListKind = iota
	ListTrash
	ListFavourites
	ListTypeBucket
	ListFolders
)

// List identifies a top-level list view; Type is only meaningful when Kind
// is ListTypeBucket.
type List struct {
	Kind ListKind
	Type CipherType
}

// kind tags which variant a View holds.
type kind int

const (
	kindList kind = iota
	kindFolder
	kindCipher
)

// View is the tagged union List(...) | Folder(i) | Cipher(i).
type View struct {
	k      kind
	list   List
	folder FolderIndex
	cipher CipherIndex
}

// NewList constructs a View showing a top-level list.
func NewList(l List) View { return View{k: kindList, list: l} }

// NewFolder constructs a View showing a folder's contents.
func NewFolder(i FolderIndex) View { return View{k: kindFolder, folder: i} }

// NewCipher constructs a View showing a single cipher's fields.
func NewCipher(i CipherIndex) View { return View{k: kindCipher, cipher: i} }

// IsList, IsFolder, IsCipher report which variant this View holds, and the
// accompanying accessors return the payload (valid only for the matching
// variant).
func (v View) IsList() bool    { return v.k == kindList }
func (v View) IsFolder() bool  { return v.k == kindFolder }
func (v View) IsCipher() bool  { return v.k == kindCipher }
func (v View) List() List      { return v.list }
func (v View) Folder() FolderIndex { return v.folder }
func (v View) Cipher() CipherIndex { return v.cipher }

// FolderOf resolves the folder index a given cipher belongs to. Vault
// supplies this (it owns the folder_id -> folder_index map); View stays
// independent of the vault package to avoid an import cycle.
type FolderOf func(CipherIndex) FolderIndex

// Parent returns the view one level up in the navigation hierarchy.
func (v View) Parent(folderOf FolderOf) View {
	switch v.k {
	case kindList:
		switch v.list.Kind {
		case ListTrash:
			return v // fixed point
		case ListFolders:
			return v // fixed point
		default: // All, Favourites, TypeBucket
			return NewList(List{Kind: ListAll})
		}
	case kindFolder:
		return NewList(List{Kind: ListFolders})
	case kindCipher:
		return NewFolder(folderOf(v.cipher))
	default:
		panic("unreachable view kind")
	}
}
