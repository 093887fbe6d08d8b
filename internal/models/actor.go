package models

import (
	"fmt"
	"strings"
)

// ActorKind identifies which identity table an actor reference points at.
type ActorKind string

const (
	ActorUser     ActorKind = "user"
	ActorMerchant ActorKind = "merchant"
	ActorAgent    ActorKind = "agent"
	ActorAdmin    ActorKind = "admin"
)

// ActorKinds is the lookup table of every kind an owner, signer or initiator
// may have, keyed by kind and mapped to the identity table that stores it.
var ActorKinds = map[ActorKind]string{
	ActorUser:     "users",
	ActorMerchant: "merchants",
	ActorAgent:    "agents",
	ActorAdmin:    "admins",
}

// Valid reports whether k is a known kind.
func (k ActorKind) Valid() bool {
	_, ok := ActorKinds[k]
	return ok
}

// ParseActorKind normalizes s and checks it against ActorKinds.
func ParseActorKind(s string) (ActorKind, error) {
	k := ActorKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown actor kind %q", s)
	}
	return k, nil
}

// ActorRef is a typed reference to an identity: the id is only meaningful
// together with its kind.
type ActorRef struct {
	Kind ActorKind `json:"kind"`
	ID   uint      `json:"id"`
}

// NewActor builds an ActorRef.
func NewActor(kind ActorKind, id uint) ActorRef {
	return ActorRef{Kind: kind, ID: id}
}

// Valid reports whether the reference names a concrete identity.
func (a ActorRef) Valid() bool {
	return a.ID != 0 && a.Kind.Valid()
}

func (a ActorRef) String() string {
	return fmt.Sprintf("%s:%d", a.Kind, a.ID)
}
