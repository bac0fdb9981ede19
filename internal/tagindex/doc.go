// Package tagindex builds the tag documents that feed the gallery's filter
// menus: one for description hashtags and one for AI-detected elements.
package tagindex
