package studentdirectory

import (
	"log/slog"

	httpadapter "campus/contexts/identity-access/student-directory/adapters/http"
	"campus/contexts/identity-access/student-directory/adapters/memory"
	"campus/contexts/identity-access/student-directory/adapters/security"
	"campus/contexts/identity-access/student-directory/application/commands"
	"campus/contexts/identity-access/student-directory/application/queries"
	"campus/contexts/identity-access/student-directory/application/workers"
	"campus/contexts/identity-access/student-directory/domain/entities"
	"campus/contexts/identity-access/student-directory/ports"

	"golang.org/x/crypto/bcrypt"
)

type Module struct {
	Handler httpadapter.Handler
	Relay   workers.OutboxRelay
	Store   *memory.Store
}

type Dependencies struct {
	Students  ports.StudentRepository
	Hasher    ports.PasswordHasher
	Tokens    ports.TokenIssuer
	Avatars   ports.AvatarStorage
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger

	AllowPrivilegedSignup bool
}

func NewModule(deps Dependencies) Module {
	return Module{
		Handler: httpadapter.Handler{
			Register: commands.RegisterUseCase{
				Students:             deps.Students,
				Hasher:               deps.Hasher,
				Clock:                deps.Clock,
				IDGen:                deps.IDGen,
				AllowPrivilegedRoles: deps.AllowPrivilegedSignup,
				Logger:               deps.Logger,
			},
			Sessions: commands.SessionUseCase{
				Students: deps.Students,
				Hasher:   deps.Hasher,
				Tokens:   deps.Tokens,
				Clock:    deps.Clock,
				Logger:   deps.Logger,
			},
			Profiles: commands.ProfileUseCase{
				Students: deps.Students,
				Avatars:  deps.Avatars,
				Clock:    deps.Clock,
				IDGen:    deps.IDGen,
				Logger:   deps.Logger,
			},
			Students: queries.StudentsUseCase{
				Students: deps.Students,
				Tokens:   deps.Tokens,
			},
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

// NewInMemoryModule wires the memory store with a minimum-cost bcrypt
// hasher and fixed test secrets. Staff sign-up is allowed.
func NewInMemoryModule(seed []entities.Student, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	tokens, err := security.NewJWTIssuer("test-access-secret", 0, "test-refresh-secret", 0)
	if err != nil {
		panic(err)
	}
	module := NewModule(Dependencies{
		Students: store,
		Hasher:   security.NewBcryptHasher(bcrypt.MinCost),
		Tokens:   tokens,
		Avatars:  store,
		Outbox:   store,
		Clock:    store,
		IDGen:    store,
		Logger:   logger,

		AllowPrivilegedSignup: true,
	})
	module.Store = store
	return module
}
