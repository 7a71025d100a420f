//go:build !linux

package main

func adviseSequential([]byte) {}
