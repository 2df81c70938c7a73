package content

import (
	"fmt"

	"homedrive/internal/config"
	"homedrive/internal/drive"
)

// NewStoreFromConfig creates a directory-backed ContentStore rooted at root,
// wrapped with at-rest encryption when configured.
func NewStoreFromConfig(root string, enc config.EncryptionConfig) (drive.ContentStore, error) {
	store, err := NewDirStore(root)
	if err != nil {
		return nil, err
	}

	switch enc.Type {
	case "", "none":
		return store, nil
	case "age":
		if enc.IdentityPath == "" {
			return nil, fmt.Errorf("age encryption requires identity_path to be set")
		}
		return NewEncryptedStore(store, enc.IdentityPath)
	default:
		return nil, fmt.Errorf("unknown encryption type: %s", enc.Type)
	}
}
