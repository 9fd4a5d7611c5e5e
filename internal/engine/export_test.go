package engine

// NewEngineWithDiskManager lets tests swap the disk layer.
var NewEngineWithDiskManager = newEngine
