package contracts

// TileCoord identifies one tile's position in one pyramid level's grid.
type TileCoord struct {
	Level int
	Row   int
	Col   int
}

// Tile is one compressed tile payload. Ownership moves from the worker that
// produced it to the assembler exactly once, through the result channel.
type Tile struct {
	Coord TileCoord
	Data  []byte
}
