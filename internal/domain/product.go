package domain

type Product struct {
	ID          string
	Name        string
	Description string
	Price       Money
	Photo       string
	Categories  []string
}
