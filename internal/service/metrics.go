package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rooms_created_total",
		Help: "Rooms allocated by the create action",
	})

	commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "room_commands_total",
		Help: "Set commands applied, by command",
	}, []string{"cmd"})

	authFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "room_auth_failures_total",
		Help: "Mutations refused for a missing or wrong admin key",
	})

	corruptDocs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "room_documents_unreadable_total",
		Help: "Stored room documents that could not be decoded",
	})
)
