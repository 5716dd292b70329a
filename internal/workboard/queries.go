package workboard

const boardsByIDQuery = `query ($ids: [ID!], $limit: Int!) {
  boards(ids: $ids, limit: $limit) {
    id
    name
    columns { id title type }
  }
}`

const listBoardsQuery = `query ($limit: Int!, $page: Int!) {
  boards(limit: $limit, page: $page, state: active) {
    id
    name
    columns { id title type }
  }
}`

const itemsQuery = `query ($board: [ID!], $limit: Int!, $columns: [String!]) {
  boards(ids: $board) {
    items_page(limit: $limit) {
      cursor
      items {
        id
        name
        column_values(ids: $columns) { id text }
      }
    }
  }
}`

const nextItemsQuery = `query ($cursor: String!, $limit: Int!, $columns: [String!]) {
  next_items_page(cursor: $cursor, limit: $limit) {
    cursor
    items {
      id
      name
      column_values(ids: $columns) { id text }
    }
  }
}`
