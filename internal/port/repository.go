package port

import (
	"github.com/vertextoedge/artifact-fetcher/internal/domain/repository"
)

// TransferRepository is an alias to domain repository interface
type TransferRepository = repository.TransferRepository

// Store is an alias to domain repository interface
type Store = repository.Store
