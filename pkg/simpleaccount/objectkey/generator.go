package objectkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for blob key generation strategies.
// Every key starts with OwnerPrefix(ownerID) so an account's blobs can be
// listed and purged by prefix.
type Generator interface {
	GenerateKey(ownerID uuid.UUID, filename string) string
}

// OwnerGenerator produces {owner}/{filename}. Uploading the same filename
// twice overwrites the earlier object.
type OwnerGenerator struct{}

func NewOwnerGenerator() *OwnerGenerator {
	return &OwnerGenerator{}
}

func (g *OwnerGenerator) GenerateKey(ownerID uuid.UUID, filename string) string {
	return Key(ownerID, filename)
}

// UniqueGenerator produces {owner}/{object id}_{filename} so uploads never
// collide.
type UniqueGenerator struct {
	// NewID defaults to uuid.New.
	NewID func() uuid.UUID
}

func NewUniqueGenerator() *UniqueGenerator {
	return &UniqueGenerator{NewID: uuid.New}
}

func (g *UniqueGenerator) GenerateKey(ownerID uuid.UUID, filename string) string {
	newID := g.NewID
	if newID == nil {
		newID = uuid.New
	}
	id := strings.ReplaceAll(newID().String(), "-", "")
	return Key(ownerID, fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)))
}

// Key returns {owner}/{filename} with the filename made safe for every backend.
func Key(ownerID uuid.UUID, filename string) string {
	return OwnerPrefix(ownerID) + sanitizeFilename(filename)
}

// OwnerPrefix returns the prefix shared by every blob of ownerID.
func OwnerPrefix(ownerID uuid.UUID) string {
	return ownerID.String() + "/"
}

// OwnerFromKey extracts the owner of a key produced by this package.
func OwnerFromKey(key string) (uuid.UUID, bool) {
	owner, _, found := strings.Cut(key, "/")
	if !found {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(owner)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// NewDefaultGenerator returns the generator used for uploads.
func NewDefaultGenerator() Generator {
	return NewUniqueGenerator()
}

func sanitizeFilename(filename string) string {
	// Drop any directory part, then replace characters some backends reject
	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if filename == "." || filename == "/" || filename == ".." {
		filename = ""
	}
	replacer := strings.NewReplacer(
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	filename = replacer.Replace(filename)
	if filename == "" {
		return "blob"
	}
	return filename
}
