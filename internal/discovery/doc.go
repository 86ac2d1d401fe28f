// Package discovery drives the incremental reveal of a virtualized listing
// feed and hands back a bounded set of listing handles.
package discovery
