// Package renditions defines the configured quality ladder and the selection
// rules that pick which renditions to produce for a given job and source.
package renditions
