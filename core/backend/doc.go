/*
Package backend serves a JSON document as a RESTful-API

Every top level key of the document is a resource. A resource holding a list of records
gets list and item routes, a resource holding a single object gets object routes.

Example document:

	{
	  "posts": [
	    { "id": "1", "title": "a title", "views": 100 }
	  ],
	  "comments": [
	    { "id": "1", "text": "a comment", "postId": "1" }
	  ],
	  "profile": { "name": "typicode" }
	}

This document is served with the following REST routes:

	GET    /posts
	POST   /posts
	GET    /posts/{id}
	PUT    /posts/{id}
	PATCH  /posts/{id}
	DELETE /posts/{id}
	GET    /comments
	...
	GET    /profile
	PUT    /profile
	PATCH  /profile
	DELETE /profile

With a path prefix, e.g. "/api", all resource routes move below it, e.g. "/api/posts".

Query parameters of list requests

	_embed=comments      embeds related resources, may be repeated
	title=a              equality filter on a property, nested properties with "author.name"
	views_gt=100         comparison filters, suffix _lt, _lte, _gt, _gte or _ne
	_sort=-views,title   sorts by properties, a leading "-" sorts descending
	_start=10&_end=20    slices the result
	_start=10&_limit=5   slices the result
	_limit=5             returns the first records
	_page=2&_per_page=5  paginates, the response carries first, prev, next, last, pages and items

Relations are inferred from names: a comment with "postId" belongs to a post, a join table
"posts_tags" with "postId" and "tagId" links posts and tags, and a field named like a resource
holding a list of ids links to that resource.

Deleting a record sets every foreign key that points to it to null. Records of the resources
named with _dependent, e.g. DELETE /posts/1?_dependent=comments, which are left with a null
foreign key are deleted as well.

Responses

By default, a successful request answers with the record, list or object itself, and POST
answers with http.StatusCreated. A failed request answers with its status code and a
message. With ReturnObject, every response is an object:

	{ "code": 200, "message": "Success", "data": ... }

Paginated responses always have this form.

Further routes

	GET  /                 index page listing all resources
	GET  /version          the version of the server
	GET  /_statistics      the number of records of every resource
	POST /auth/login       login with username and password, if authentication is enabled

Static files are served from the configured directories.
*/
package backend
