// Package calib inverts a sensor's forward calibration model.
//
// Given a target physical quantity, Mapper finds the signal value on a fixed
// grid whose forward prediction is closest to the target. The resistance fed
// to the model is the calibration sample whose temperature is nearest the
// reference temperature. This is a lookup, not a fit: resolution is one grid
// step.
package calib
