/*
Package session persists and resumes the controlled values of trees.

A session is a snapshot (checked, expanded and activated identities) stored under an ID.
The Manager serializes access per session with reference-counted local locks and an
optional distributed locker, so several replicas can share one store.
*/
package session
