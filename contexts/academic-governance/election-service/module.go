package electionservice

import (
	"log/slog"
	"time"

	httpadapter "campus/contexts/academic-governance/election-service/adapters/http"
	"campus/contexts/academic-governance/election-service/adapters/memory"
	"campus/contexts/academic-governance/election-service/application/commands"
	"campus/contexts/academic-governance/election-service/application/queries"
	"campus/contexts/academic-governance/election-service/application/workers"
	"campus/contexts/academic-governance/election-service/domain/entities"
	"campus/contexts/academic-governance/election-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Relay   workers.OutboxRelay
	Store   *memory.Store
}

type Dependencies struct {
	Elections      ports.ElectionRepository
	Students       ports.StudentDirectory
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxRepository
	Publisher      ports.EventPublisher
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	CloseAttempts  int
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	coordinator := commands.RoleTransitionCoordinator{Logger: deps.Logger}
	return Module{
		Handler: httpadapter.Handler{
			Create: commands.CreateElectionUseCase{
				Elections:      deps.Elections,
				Students:       deps.Students,
				Idempotency:    deps.Idempotency,
				Clock:          deps.Clock,
				IDGen:          deps.IDGen,
				IdempotencyTTL: deps.IdempotencyTTL,
				Logger:         deps.Logger,
			},
			Votes: commands.VoteUseCase{
				Elections: deps.Elections,
				Clock:     deps.Clock,
				IDGen:     deps.IDGen,
				Logger:    deps.Logger,
			},
			Close: commands.CloseElectionUseCase{
				Elections:   deps.Elections,
				Coordinator: coordinator,
				Clock:       deps.Clock,
				IDGen:       deps.IDGen,
				MaxAttempts: deps.CloseAttempts,
				Logger:      deps.Logger,
			},
			Delete: commands.DeleteElectionUseCase{
				Elections: deps.Elections,
				Clock:     deps.Clock,
				IDGen:     deps.IDGen,
				Logger:    deps.Logger,
			},
			Elections: queries.ElectionsUseCase{
				Elections: deps.Elections,
				Students:  deps.Students,
			},
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
	}
}

// NewInMemoryModule wires every port to one memory.Store. Students the
// elections reference must be added with Store.SetStudent.
func NewInMemoryModule(seed []entities.Election, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Elections:      store,
		Students:       store,
		Idempotency:    store,
		Outbox:         store,
		Clock:          store,
		IDGen:          store,
		IdempotencyTTL: 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
