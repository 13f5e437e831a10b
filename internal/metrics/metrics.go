package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts login resolutions by outcome (admin, student, failed).
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studentdesk_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	// AttendanceMarks counts accepted attendance marks.
	AttendanceMarks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studentdesk_attendance_marks_total",
		Help: "Accepted attendance mark operations.",
	})

	// NoteUploads counts stored note documents.
	NoteUploads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studentdesk_note_uploads_total",
		Help: "Stored note documents, broadcast copies included.",
	})

	// BroadcastFailures counts per-student failures during broadcast uploads.
	BroadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "studentdesk_broadcast_failures_total",
		Help: "Per-student failures during broadcast uploads.",
	})
)
