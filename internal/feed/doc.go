// Package feed publishes the latest gallery photos as RSS and Atom.
package feed
