// Package core defines the shared vocabulary of the dispatch service: role
// based content made of heterogeneous parts, the Event unit emitted by an
// executing capability, and the Capability boundary behind which all agent
// reasoning lives. Higher layers (session store, dispatcher, HTTP surface)
// depend only on these types, never on a concrete agent backend.
package core
