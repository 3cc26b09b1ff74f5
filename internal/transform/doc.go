// Package transform implements the dataset operations a pipeline step can
// run. Every function is pure: it returns a new dataset and never mutates
// its input. When an operation cannot be carried out it returns a usable
// dataset (usually the input) together with an error describing the
// anomaly; the caller decides how loudly to report it.
package transform
