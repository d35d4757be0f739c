package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skylinee_messages_appended_total",
		Help: "Messages appended to thread logs, by sender role.",
	}, []string{"role"})

	threadsMarkedRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skylinee_threads_marked_read_total",
		Help: "Read watermark updates.",
	})

	threadsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skylinee_threads_purged_total",
		Help: "Dangling threads purged by the consistency sweeper.",
	})
)
