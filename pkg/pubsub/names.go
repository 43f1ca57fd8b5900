package pubsub

import "strings"

// qualify expands a short topic or subscription id into its resource path.
// Names that are already fully qualified pass through untouched.
func qualify(project, collection, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+collection+"/") {
		return name
	}
	project = strings.TrimSpace(project)
	if project == "" {
		return ""
	}
	return "projects/" + project + "/" + collection + "/" + name
}

func topicPath(project, name string) string {
	return qualify(project, "topics", name)
}

func subscriptionPath(project, name string) string {
	return qualify(project, "subscriptions", name)
}
