package memory

import (
	"testing"

	"finsight/internal/storage"
	"finsight/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}
