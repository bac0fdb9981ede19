// Package gallery holds the view logic of the photo gallery: query
// filters, moderation, grouping by week and the popular photos ranking.
//
// Everything here is pure and works on rows already read from the
// database package.
package gallery
