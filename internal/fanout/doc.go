// Package fanout merges several concurrently resolved sub-crawls into one
// de-duplicated collection. Group resolvers run first and claim their own id
// plus every member id they own in a per-run Registry; standalone candidates
// that nobody claimed are then fetched in bounded chunks. Output order is
// first-claim order, groups before standalone entries.
package fanout
