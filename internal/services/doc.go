// Package services holds the error taxonomy and context plumbing shared by
// the conveyor stages and their external collaborator clients.
package services
