// Package wizard sequences a verification attempt through its capture
// stages. Each stage implements the Handler contract; the runner adds
// stage-scoped logging and failure notification, and the Wizard resumes an
// interrupted attempt from the session tracker's progress record.
package wizard
