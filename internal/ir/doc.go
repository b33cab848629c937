// Package ir provides the identifier and record types shared by every other
// rmerge package.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - ServiceID values are immutable once written to a Recipient; a record
//     may go from no ServiceID to one, never from one ServiceID to another.
//   - E164 values are always stored in normalized form ("+" followed by
//     ASCII digits). Use ParseE164 for anything that came from outside.
//   - Optional identifiers are pointers; nil means "absent", never "empty".
//   - All JSON tags use snake_case.
package ir
