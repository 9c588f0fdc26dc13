package iconic

import (
	"context"
	"fmt"
	"net/http"
)

// Category is a node in the platform category taxonomy.
type Category struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ParentID int    `json:"parentId,omitempty"`
}

// CategoryTree is a category with its nested children.
type CategoryTree struct {
	Category
	Children []CategoryTree `json:"children,omitempty"`
}

// CategoryAttribute describes an attribute required or allowed for product
// sets in a category.
type CategoryAttribute struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Label       string   `json:"label,omitempty"`
	IsMandatory bool     `json:"isMandatory"`
	InputType   string   `json:"inputType,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// CategoriesService maps the /v2/category endpoints.
type CategoriesService struct {
	client *Client
}

func (s *CategoriesService) res() resource[Category] {
	return resource[Category]{client: s.client, path: "/v2/categories"}
}

// Tree returns the full categories tree.
func (s *CategoriesService) Tree(ctx context.Context) ([]CategoryTree, error) {
	var tree []CategoryTree
	err := s.client.Do(ctx, RequestSpec{
		Method:     http.MethodGet,
		Path:       "/v2/category/tree",
		NeedsAuth:  true,
		Idempotent: true,
	}, &tree)
	return tree, err
}

// Get fetches a single category by ID.
func (s *CategoriesService) Get(ctx context.Context, id int) (*Handle[Category], error) {
	return s.res().get(ctx, fmt.Sprintf("/v2/category/%d", id))
}

// Attributes returns the attributes of a category handle.
func (s *CategoriesService) Attributes(ctx context.Context, category *Handle[Category]) ([]CategoryAttribute, error) {
	var attrs []CategoryAttribute
	err := s.client.Do(ctx, RequestSpec{
		Method:     http.MethodGet,
		Path:       category.Path() + "/attributes",
		NeedsAuth:  true,
		Idempotent: true,
	}, &attrs)
	return attrs, err
}

// Children lists the direct children of a category handle. It behaves
// identically to a top-level listing filtered by parent ID.
func (s *CategoriesService) Children(ctx context.Context, category *Handle[Category]) ([]Category, error) {
	child := resource[Category]{client: s.client, path: category.Path() + "/children"}
	return child.all(ctx, PageRequest{})
}
