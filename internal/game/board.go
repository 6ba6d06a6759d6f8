// internal/game/board.go
package game

// Marks placed on the board. An empty string is an empty cell.
const (
	MarkX = "X"
	MarkO = "O"
)

// winningLines are the 8 triples that decide a game: 3 rows, 3 columns,
// 2 diagonals, indexed into the 9-cell board.
var winningLines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// CalculateWinner returns the mark ("X" or "O") holding a complete line, or
// "" if the board has no winner. The board is trusted to be well-formed; a
// slice that is not 9 cells long never has a winner.
func CalculateWinner(squares []string) string {
	if len(squares) != 9 {
		return ""
	}
	for _, line := range winningLines {
		a, b, c := line[0], line[1], line[2]
		if squares[a] != "" && squares[a] == squares[b] && squares[a] == squares[c] {
			return squares[a]
		}
	}
	return ""
}
