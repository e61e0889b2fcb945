/*
Package session serializes work on the run record of each vehicle.

A chat turn reads the previous record, runs the pipeline on it and stores the
result. The Manager makes that read-modify-write atomic per vehicle, in
process with reference-counted mutexes and across replicas with an optional
distributed locker.
*/
package session
