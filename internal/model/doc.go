// Package model runs the trained LSTM classifier and reads and writes its
// weights, either as JSON or in a quantized msgpack form.
package model
