// Package utils provides small shared helpers: filesystem-safe name
// sanitization, file-extension handling, and generic slice transforms.
package utils
