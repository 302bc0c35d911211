// Package usecases holds one function per user intent. Each makes exactly one
// repository call, propagates the classified error unchanged and never
// retries. Secrets and tokens are never logged.
package usecases
