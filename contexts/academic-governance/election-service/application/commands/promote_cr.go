package commands

import (
	"context"
	"log/slog"
	"strings"

	application "campus/contexts/academic-governance/election-service/application"
	"campus/contexts/academic-governance/election-service/domain/entities"
	domainerrors "campus/contexts/academic-governance/election-service/domain/errors"
	"campus/contexts/academic-governance/election-service/ports"
)

// RoleTransitionCoordinator moves the CR designation of a class to an
// election winner. It must run against a transaction-bound RoleStore so the
// demotion and the promotion commit together.
type RoleTransitionCoordinator struct {
	Logger *slog.Logger
}

// PromoteToCR demotes the current CR of className (if it is someone else)
// and promotes winnerID. Blank arguments are a no-op.
func (c RoleTransitionCoordinator) PromoteToCR(
	ctx context.Context,
	roles ports.RoleStore,
	winnerID string,
	className string,
) (entities.RoleTransition, error) {
	logger := application.ResolveLogger(c.Logger)
	winnerID = strings.TrimSpace(winnerID)
	className = strings.TrimSpace(className)
	if winnerID == "" || className == "" {
		return entities.RoleTransition{ClassName: className, NoOp: true}, nil
	}

	incumbent, hasIncumbent, err := roles.FindClassRepresentative(ctx, className)
	if err != nil {
		return entities.RoleTransition{}, err
	}
	if hasIncumbent && incumbent.StudentID == winnerID {
		logger.Info("winner already holds the CR role",
			"event", "election_role_transition_noop",
			"module", "academic-governance/election-service",
			"layer", "application",
			"class_name", className,
			"student_id", winnerID,
		)
		return entities.RoleTransition{ClassName: className, PromotedID: winnerID, NoOp: true}, nil
	}

	winner, err := roles.GetStudent(ctx, winnerID)
	if err != nil {
		return entities.RoleTransition{}, err
	}
	if winner.ClassName != className {
		return entities.RoleTransition{}, domainerrors.ErrWinnerClassMismatch
	}

	transition := entities.RoleTransition{ClassName: className, PromotedID: winnerID}
	if hasIncumbent {
		if err := roles.SetStudentRole(ctx, incumbent.StudentID, entities.RoleStudent); err != nil {
			return entities.RoleTransition{}, err
		}
		transition.DemotedID = incumbent.StudentID
	}
	if err := roles.SetStudentRole(ctx, winnerID, entities.RoleCR); err != nil {
		return entities.RoleTransition{}, err
	}

	logger.Info("class representative transition staged",
		"event", "election_role_transition_staged",
		"module", "academic-governance/election-service",
		"layer", "application",
		"class_name", className,
		"demoted_id", transition.DemotedID,
		"promoted_id", transition.PromotedID,
	)
	return transition, nil
}
