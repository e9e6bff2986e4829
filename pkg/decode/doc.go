// Package decode turns upstream page bodies into pagination.PageResponse values.
//
// Two decoders are provided:
//
//   - JSON: rows and totals are located by dotted paths ("result.data",
//     "data.total"); numeric segments index arrays. JSONP callbacks and
//     "var x = {...};" script bodies can be unwrapped first. String rows can
//     be split on a separator into positional records.
//   - HTML: rows and cells are located by CSS selectors, the page count by a
//     selector and an optional regular expression over its text.
//
// Both decoders optionally transcode GBK or GB18030 bodies to UTF-8.
package decode
