package msglist

// FolderState is the per folder view state kept across sessions.
type FolderState struct {
	Sort      []string `json:"sort,omitempty"`
	Columns   []string `json:"columns,omitempty"`
	HideLower int      `json:"hide-lower"`
	HideUpper int      `json:"hide-upper"`
}

// Settings stores FolderState values by folder name. Load returns nil
// without error for unknown folders.
type Settings interface {
	Load(folder string) (*FolderState, error)
	Save(folder string, state *FolderState) error
}
