package statemachine

import (
	"fmt"
	"strings"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"
)

// Actor is who triggers a transition
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorOwner    Actor = "restaurant_owner"
	ActorAdmin    Actor = "admin"
	ActorSystem   Actor = "system" // payment callbacks
)

// ActorFor maps a user role onto the actor used in the transition table
func ActorFor(role models.UserRole) Actor {
	switch role {
	case models.RoleAdmin:
		return ActorAdmin
	case models.RoleRestaurantOwner:
		return ActorOwner
	default:
		return ActorCustomer
	}
}

// Transition defines a valid state change and who can perform it
type Transition struct {
	From  models.OrderStatus `json:"from"`
	To    models.OrderStatus `json:"to"`
	Actor Actor              `json:"actor"`
}

// validTransitions is the authoritative state machine definition
var validTransitions = func() []Transition {
	kitchen := []Actor{ActorOwner, ActorAdmin}
	var ts []Transition
	add := func(from, to models.OrderStatus, actors ...Actor) {
		for _, a := range actors {
			ts = append(ts, Transition{From: from, To: to, Actor: a})
		}
	}

	// Forward path, driven by the restaurant
	add(models.StatusPending, models.StatusConfirmed, append(kitchen, ActorSystem)...)
	add(models.StatusConfirmed, models.StatusPreparing, kitchen...)
	add(models.StatusPreparing, models.StatusOutForDelivery, kitchen...)
	add(models.StatusOutForDelivery, models.StatusDelivered, kitchen...)

	// Customers may cancel until the kitchen starts; the restaurant until delivery
	add(models.StatusPending, models.StatusCancelled, ActorCustomer, ActorOwner, ActorAdmin, ActorSystem)
	add(models.StatusConfirmed, models.StatusCancelled, ActorCustomer, ActorOwner, ActorAdmin)
	add(models.StatusPreparing, models.StatusCancelled, kitchen...)
	add(models.StatusOutForDelivery, models.StatusCancelled, kitchen...)
	return ts
}()

// transitionKey is used to look up valid transitions quickly
type transitionKey struct {
	From  models.OrderStatus
	To    models.OrderStatus
	Actor Actor
}

var transitionMap = func() map[transitionKey]bool {
	m := make(map[transitionKey]bool)
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.To, t.Actor}] = true
	}
	return m
}()

// ValidTransitionsFrom returns all valid next states from a given state, for any actor
func ValidTransitionsFrom(status models.OrderStatus) []models.OrderStatus {
	return collect(status, func(Transition) bool { return true })
}

// ValidTransitionsFor returns the next states a specific actor may choose
func ValidTransitionsFor(status models.OrderStatus, actor Actor) []models.OrderStatus {
	return collect(status, func(t Transition) bool { return t.Actor == actor })
}

func collect(status models.OrderStatus, keep func(Transition) bool) []models.OrderStatus {
	nexts := []models.OrderStatus{}
	seen := map[models.OrderStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && keep(t) && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

// CanTransition checks if a given actor can move from one state to another.
// A rejected transition is a Conflict carrying the actor's valid next states.
func CanTransition(from, to models.OrderStatus, actor Actor) error {
	if transitionMap[transitionKey{From: from, To: to, Actor: actor}] {
		return nil
	}
	nexts := ValidTransitionsFor(from, actor)
	msg := fmt.Sprintf("Invalid status transition: %s → %s is not allowed for %s. Valid transitions from %s are: %s",
		from, to, actor, from, describe(nexts))
	return apperr.Conflict(msg).WithDetails(map[string]any{
		"currentStatus":   from,
		"requestedStatus": to,
		"validNextStates": nexts,
	})
}

func describe(nexts []models.OrderStatus) string {
	if len(nexts) == 0 {
		return "none (terminal state)"
	}
	parts := make([]string, len(nexts))
	for i, s := range nexts {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// GetAllTransitions returns the full state machine for documentation
func GetAllTransitions() []Transition {
	return validTransitions
}
