package trainer

import "github.com/reglet-dev/reglet-compose/domain/entities"

// Event types fired by the engine and its loops.
const (
	EngineStart entities.EventType = "engine_start"
	EngineEnd   entities.EventType = "engine_end"
	DataBatch   entities.EventType = "data_batch"
)

// Entry names the entry point an engine runs.
type Entry string

const (
	EntryTrain      Entry = "train"
	EntryValidation Entry = "validation"
	EntryTest       Entry = "test"
)

// EpochStart returns the epoch start event of entry, e.g. "train_epoch_start".
func EpochStart(entry Entry) entities.EventType {
	return entities.EventType(string(entry) + "_epoch_start")
}

// EpochEnd returns the epoch end event of entry.
func EpochEnd(entry Entry) entities.EventType {
	return entities.EventType(string(entry) + "_epoch_end")
}

// BatchStart returns the batch start event of entry.
func BatchStart(entry Entry) entities.EventType {
	return entities.EventType(string(entry) + "_batch_start")
}

// BatchEnd returns the batch end event of entry.
func BatchEnd(entry Entry) entities.EventType {
	return entities.EventType(string(entry) + "_batch_end")
}

// EventTypes returns every event type the engine declares.
func EventTypes() []entities.EventType {
	types := []entities.EventType{EngineStart, EngineEnd, DataBatch}
	for _, e := range []Entry{EntryTrain, EntryValidation, EntryTest} {
		types = append(types, EpochStart(e), EpochEnd(e), BatchStart(e), BatchEnd(e))
	}
	return types
}
